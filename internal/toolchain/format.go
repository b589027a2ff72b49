// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"bytes"
	"debug/macho"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"cargo-pod/pkg/target"
)

const (
	// FormatUnknown is anything cargo-pod cannot merge.
	FormatUnknown Format = "unknown"
	// FormatArchive is a Unix ar archive (a static library).
	FormatArchive Format = "ar"
	// FormatMachO is a thin Mach-O object.
	FormatMachO Format = "macho"
	// FormatFat is a universal (fat) Mach-O file.
	FormatFat Format = "fat"

	arMagic     = "!<arch>\n"
	arHeaderLen = 60
)

// ErrUnknownFormat is returned when a file's format cannot be identified.
var ErrUnknownFormat = errors.New("unrecognized binary format")

type (
	// Format is the container format of a library file.
	Format string

	// BinaryInfo describes a library file for merge compatibility checks.
	BinaryInfo struct {
		Format Format
		// Archs lists the architectures found. It may be empty for archives
		// whose members are not Mach-O objects.
		Archs []target.Arch
	}
)

// DetectFormat inspects the magic bytes of path.
func DetectFormat(path string) (BinaryInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return BinaryInfo{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	magic := make([]byte, len(arMagic))
	n, err := io.ReadFull(f, magic)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return BinaryInfo{Format: FormatUnknown}, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	magic = magic[:n]

	switch {
	case string(magic) == arMagic:
		return BinaryInfo{Format: FormatArchive, Archs: archiveArchs(f)}, nil
	case n >= 4 && binary.BigEndian.Uint32(magic) == macho.MagicFat:
		fat, err := macho.OpenFat(path)
		if err != nil {
			return BinaryInfo{Format: FormatUnknown}, fmt.Errorf("%w: %s: %w", ErrUnknownFormat, path, err)
		}
		defer fat.Close()
		info := BinaryInfo{Format: FormatFat}
		for _, a := range fat.Arches {
			if arch, ok := archFromCPU(a.Cpu); ok {
				info.Archs = append(info.Archs, arch)
			}
		}
		return info, nil
	case n >= 4 && isMachOMagic(magic[:4]):
		mf, err := macho.Open(path)
		if err != nil {
			return BinaryInfo{Format: FormatUnknown}, fmt.Errorf("%w: %s: %w", ErrUnknownFormat, path, err)
		}
		defer mf.Close()
		info := BinaryInfo{Format: FormatMachO}
		if arch, ok := archFromCPU(mf.Cpu); ok {
			info.Archs = []target.Arch{arch}
		}
		return info, nil
	default:
		return BinaryInfo{Format: FormatUnknown}, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// archiveArchs returns the architecture of the first Mach-O member of an ar
// archive positioned just after its global header.
func archiveArchs(r io.ReadSeeker) []target.Arch {
	offset := int64(len(arMagic))
	hdr := make([]byte, arHeaderLen)
	for {
		if _, err := r.Seek(offset, io.SeekStart); err != nil {
			return nil
		}
		if _, err := io.ReadFull(r, hdr); err != nil {
			return nil
		}
		name := strings.TrimSpace(string(hdr[0:16]))
		size, err := strconv.ParseInt(strings.TrimSpace(string(hdr[48:58])), 10, 64)
		if err != nil || size < 0 {
			return nil
		}
		dataStart := offset + arHeaderLen
		dataLen := size

		// BSD long names: "#1/<len>" with the name prefixed to the data.
		if rest, ok := strings.CutPrefix(name, "#1/"); ok {
			nameLen, err := strconv.ParseInt(rest, 10, 64)
			if err != nil || nameLen > size {
				return nil
			}
			nameBuf := make([]byte, nameLen)
			if _, err := io.ReadFull(r, nameBuf); err != nil {
				return nil
			}
			name = string(bytes.TrimRight(nameBuf, "\x00"))
			dataStart += nameLen
			dataLen -= nameLen
		}

		if !isSymbolTable(name) && dataLen >= 4 {
			section := io.NewSectionReader(readerAt(r), dataStart, dataLen)
			if mf, err := macho.NewFile(section); err == nil {
				arch, ok := archFromCPU(mf.Cpu)
				if ok {
					return []target.Arch{arch}
				}
				return nil
			}
		}

		offset += arHeaderLen + size
		if offset%2 == 1 {
			offset++
		}
	}
}

func isSymbolTable(name string) bool {
	return strings.HasPrefix(name, "__.SYMDEF") || name == "/" || name == "//"
}

func isMachOMagic(b []byte) bool {
	be := binary.BigEndian.Uint32(b)
	le := binary.LittleEndian.Uint32(b)
	return be == macho.Magic32 || be == macho.Magic64 || le == macho.Magic32 || le == macho.Magic64
}

func archFromCPU(cpu macho.Cpu) (target.Arch, bool) {
	switch cpu {
	case macho.CpuArm64:
		return target.ArchARM64, true
	case macho.CpuAmd64:
		return target.ArchX86_64, true
	default:
		return "", false
	}
}

// readerAt adapts the seeker used by DetectFormat; *os.File already
// implements io.ReaderAt.
func readerAt(r io.ReadSeeker) io.ReaderAt {
	if ra, ok := r.(io.ReaderAt); ok {
		return ra
	}
	return &seekReaderAt{r: r}
}

type seekReaderAt struct {
	r io.ReadSeeker
}

func (s *seekReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if _, err := s.r.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return io.ReadFull(s.r, p)
}
