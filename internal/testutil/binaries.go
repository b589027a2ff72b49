// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"bytes"
	"debug/macho"
	"encoding/binary"
	"fmt"
)

// MachOObject returns a minimal 64-bit little-endian Mach-O object header for
// cpu. It has no load commands but is accepted by debug/macho.
func MachOObject(cpu macho.Cpu) []byte {
	var buf bytes.Buffer
	for _, v := range []uint32{macho.Magic64, uint32(cpu), 0, uint32(macho.TypeObj), 0, 0, 0, 0} {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

// StaticLibrary wraps members in a BSD ar archive, preceded by an empty
// symbol table the way ranlib leaves it. Members are named obj0.o, obj1.o...
func StaticLibrary(members ...[]byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("!<arch>\n")
	writeMember := func(name string, data []byte) {
		fmt.Fprintf(&buf, "%-16s%-12d%-6d%-6d%-8o%-10d`\n", name, 0, 0, 0, 0o644, len(data))
		buf.Write(data)
		if len(data)%2 == 1 {
			buf.WriteByte('\n')
		}
	}
	writeMember("__.SYMDEF", []byte{0, 0, 0, 0})
	for i, m := range members {
		writeMember(fmt.Sprintf("obj%d.o", i), m)
	}
	return buf.Bytes()
}

// FatBinary wraps thin Mach-O objects in a universal header, one per 4 KiB page.
func FatBinary(objs ...[]byte) []byte {
	const page = 4096
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(macho.MagicFat))
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(objs)))
	for i, obj := range objs {
		cpu := binary.LittleEndian.Uint32(obj[4:8])
		for _, v := range []uint32{cpu, 0, uint32(page * (i + 1)), uint32(len(obj)), 12} {
			_ = binary.Write(&buf, binary.BigEndian, v)
		}
	}
	for i, obj := range objs {
		buf.Write(make([]byte, page*(i+1)-buf.Len()))
		buf.Write(obj)
	}
	return buf.Bytes()
}
