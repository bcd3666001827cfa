//go:build !vm_no_compiler

package runner

// compilerCompiledIn 编译器引擎已编译进本二进制（构建标签 vm_no_compiler 可去掉）
const compilerCompiledIn = true
