package container

// AccessFlags are the DEX access_flags bits shared by classes, fields and methods.
type AccessFlags uint32

const (
	AccPublic       AccessFlags = 0x1
	AccPrivate      AccessFlags = 0x2
	AccProtected    AccessFlags = 0x4
	AccStatic       AccessFlags = 0x8
	AccFinal        AccessFlags = 0x10
	AccSynchronized AccessFlags = 0x20
	AccVolatile     AccessFlags = 0x40 // fields; AccBridge on methods
	AccBridge       AccessFlags = 0x40
	AccTransient    AccessFlags = 0x80 // fields; AccVarargs on methods
	AccVarargs      AccessFlags = 0x80
	AccNative       AccessFlags = 0x100
	AccInterface    AccessFlags = 0x200
	AccAbstract     AccessFlags = 0x400
	AccStrict       AccessFlags = 0x800
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000
	AccConstructor  AccessFlags = 0x10000

	AccDeclaredSynchronized AccessFlags = 0x20000
)

// Has reports whether all bits of mask are set.
func (f AccessFlags) Has(mask AccessFlags) bool { return f&mask == mask }

type flagWord struct {
	flag AccessFlags
	word string
}

var classWords = []flagWord{
	{AccPublic, "public"},
	{AccPrivate, "private"},
	{AccProtected, "protected"},
	{AccStatic, "static"},
	{AccAbstract, "abstract"},
	{AccFinal, "final"},
}

var fieldWords = []flagWord{
	{AccPublic, "public"},
	{AccPrivate, "private"},
	{AccProtected, "protected"},
	{AccStatic, "static"},
	{AccFinal, "final"},
	{AccTransient, "transient"},
	{AccVolatile, "volatile"},
}

var methodWords = []flagWord{
	{AccPublic, "public"},
	{AccPrivate, "private"},
	{AccProtected, "protected"},
	{AccStatic, "static"},
	{AccAbstract, "abstract"},
	{AccFinal, "final"},
	{AccSynchronized, "synchronized"},
	{AccNative, "native"},
	{AccStrict, "strictfp"},
}

func words(f AccessFlags, table []flagWord) []string {
	var out []string
	for _, w := range table {
		if f.Has(w.flag) {
			out = append(out, w.word)
		}
	}
	return out
}

// ClassModifiers returns Java modifiers in declaration order. Interfaces
// drop the implicit "abstract".
func (f AccessFlags) ClassModifiers() []string {
	if f.Has(AccInterface) {
		return words(f&^AccAbstract, classWords)
	}
	return words(f, classWords)
}

// FieldModifiers returns Java field modifiers in declaration order.
func (f AccessFlags) FieldModifiers() []string { return words(f, fieldWords) }

// MethodModifiers returns Java method modifiers in declaration order.
func (f AccessFlags) MethodModifiers() []string { return words(f, methodWords) }

// ClassKind returns "interface", "@interface", "enum" or "class".
func (f AccessFlags) ClassKind() string {
	switch {
	case f.Has(AccAnnotation):
		return "@interface"
	case f.Has(AccInterface):
		return "interface"
	case f.Has(AccEnum):
		return "enum"
	}
	return "class"
}
