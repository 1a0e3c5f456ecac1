package container

import "strings"

var primitives = map[byte]string{
	'V': "void",
	'Z': "boolean",
	'B': "byte",
	'S': "short",
	'C': "char",
	'I': "int",
	'J': "long",
	'F': "float",
	'D': "double",
}

// JavaName converts a type descriptor ("[Ljava/lang/String;") to its Java
// spelling ("java.lang.String[]"). Unrecognized descriptors are returned as-is.
func JavaName(desc string) string {
	dims := 0
	for dims < len(desc) && desc[dims] == '[' {
		dims++
	}
	base := desc[dims:]
	var name string
	switch {
	case len(base) == 1 && primitives[base[0]] != "":
		name = primitives[base[0]]
	case len(base) >= 2 && base[0] == 'L' && base[len(base)-1] == ';':
		name = strings.ReplaceAll(base[1:len(base)-1], "/", ".")
	default:
		return desc
	}
	return name + strings.Repeat("[]", dims)
}

// Descriptor converts a dotted Java type name back to a type descriptor.
func Descriptor(name string) string {
	dims := 0
	for strings.HasSuffix(name, "[]") {
		name = strings.TrimSuffix(name, "[]")
		dims++
	}
	prefix := strings.Repeat("[", dims)
	for c, p := range primitives {
		if p == name {
			return prefix + string(c)
		}
	}
	return prefix + "L" + strings.ReplaceAll(name, ".", "/") + ";"
}
