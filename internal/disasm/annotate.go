package disasm

import "fmt"

// Annotator returns an optional inline comment for an instruction.
// Empty string means no annotation. Annotators may keep state across
// calls; build a fresh one per function.
type Annotator func(inst Inst) string

// regEnv is X0, the JNIEnv* argument of every JNI entry point.
const regEnv = 0

// isLDR64UnsignedOffset returns true if the raw 32-bit ARM64 instruction is
// LDR Xt, [Xn, #imm] (64-bit, unsigned offset). Returns the base register,
// the destination register and the byte offset.
//
// Encoding: size=11 | 111 | V=0 | 01 | opc=01 | imm12 | Rn | Rt
// Mask: 0xFFC00000, Value: 0xF9400000
func isLDR64UnsignedOffset(raw uint32) (baseReg, rt int, byteOffset int, ok bool) {
	if raw&0xFFC00000 != 0xF9400000 {
		return 0, 0, 0, false
	}
	rn := int((raw >> 5) & 0x1F)
	imm12 := int((raw >> 10) & 0xFFF)
	return rn, int(raw & 0x1F), imm12 << 3, true // scaled by 8 for 64-bit
}

// isMOVReg detects MOV Xd, Xm (alias of ORR Xd, XZR, Xm).
// Mask: 0xFFE0FFE0, Value: 0xAA0003E0
func isMOVReg(raw uint32) (rd, rm int, ok bool) {
	if raw&0xFFE0FFE0 != 0xAA0003E0 {
		return 0, 0, false
	}
	return int(raw & 0x1F), int((raw >> 16) & 0x1F), true
}

// JNIEnvAnnotator tracks the JNIEnv pointer from X0 through register moves
// and names function-table loads: LDR Xt, [env] followed by
// LDR Xu, [Xt, #off] is annotated "JNIEnv->NewStringUTF".
func JNIEnvAnnotator() Annotator {
	var env, table [32]bool
	env[regEnv] = true
	return func(inst Inst) string {
		if rd, rm, ok := isMOVReg(inst.Raw); ok {
			env[rd], table[rd] = env[rm], table[rm]
			return ""
		}
		if rn, rt, off, ok := isLDR64UnsignedOffset(inst.Raw); ok {
			isEnv, isTable := env[rn], table[rn]
			env[rt], table[rt] = false, false
			switch {
			case isEnv && off == 0:
				table[rt] = true
			case isTable:
				return "JNIEnv->" + JNIFunctionName(off/8)
			}
			return ""
		}
		if rd := dstRegOfInst(inst.Raw); rd >= 0 {
			env[rd], table[rd] = false, false
		}
		return ""
	}
}

// CallTargetAnnotator names the target of BL instructions.
func CallTargetAnnotator(lookup SymbolLookup) Annotator {
	return func(inst Inst) string {
		target, ok := isBL(inst.Raw, inst.Addr)
		if !ok || lookup == nil {
			return ""
		}
		if name, found := lookup(target); found {
			return "-> " + name
		}
		return fmt.Sprintf("-> sub_%x", target)
	}
}

var jniTypes = []string{"Object", "Boolean", "Byte", "Char", "Short", "Int", "Long", "Float", "Double", "Void"}

var jniPrims = []string{"Boolean", "Byte", "Char", "Short", "Int", "Long", "Float", "Double"}

// jniFunctions is the JNINativeInterface function table in slot order.
var jniFunctions = buildJNITable()

func buildJNITable() []string {
	t := []string{"reserved0", "reserved1", "reserved2", "reserved3",
		"GetVersion", "DefineClass", "FindClass",
		"FromReflectedMethod", "FromReflectedField", "ToReflectedMethod",
		"GetSuperclass", "IsAssignableFrom", "ToReflectedField",
		"Throw", "ThrowNew", "ExceptionOccurred", "ExceptionDescribe", "ExceptionClear", "FatalError",
		"PushLocalFrame", "PopLocalFrame",
		"NewGlobalRef", "DeleteGlobalRef", "DeleteLocalRef", "IsSameObject", "NewLocalRef", "EnsureLocalCapacity",
		"AllocObject", "NewObject", "NewObjectV", "NewObjectA",
		"GetObjectClass", "IsInstanceOf", "GetMethodID",
	}
	calls := func(prefix string) {
		for _, ty := range jniTypes {
			t = append(t, prefix+ty+"Method", prefix+ty+"MethodV", prefix+ty+"MethodA")
		}
	}
	fieldOps := func(kind string) {
		for _, ty := range jniTypes[:9] {
			t = append(t, kind+ty+"Field")
		}
	}
	calls("Call")
	calls("CallNonvirtual")
	t = append(t, "GetFieldID")
	fieldOps("Get")
	fieldOps("Set")
	t = append(t, "GetStaticMethodID")
	calls("CallStatic")
	t = append(t, "GetStaticFieldID")
	fieldOps("GetStatic")
	fieldOps("SetStatic")
	t = append(t,
		"NewString", "GetStringLength", "GetStringChars", "ReleaseStringChars",
		"NewStringUTF", "GetStringUTFLength", "GetStringUTFChars", "ReleaseStringUTFChars",
		"GetArrayLength", "NewObjectArray", "GetObjectArrayElement", "SetObjectArrayElement")
	for _, pattern := range []string{"New%sArray", "Get%sArrayElements", "Release%sArrayElements", "Get%sArrayRegion", "Set%sArrayRegion"} {
		for _, p := range jniPrims {
			t = append(t, fmt.Sprintf(pattern, p))
		}
	}
	t = append(t,
		"RegisterNatives", "UnregisterNatives", "MonitorEnter", "MonitorExit", "GetJavaVM",
		"GetStringRegion", "GetStringUTFRegion",
		"GetPrimitiveArrayCritical", "ReleasePrimitiveArrayCritical",
		"GetStringCritical", "ReleaseStringCritical",
		"NewWeakGlobalRef", "DeleteWeakGlobalRef", "ExceptionCheck",
		"NewDirectByteBuffer", "GetDirectBufferAddress", "GetDirectBufferCapacity",
		"GetObjectRefType")
	return t
}

// JNIFunctionName returns the JNIEnv function at the given table slot.
func JNIFunctionName(slot int) string {
	if slot >= 0 && slot < len(jniFunctions) {
		return jniFunctions[slot]
	}
	return fmt.Sprintf("fn[%d]", slot)
}
