//go:build !vm_no_interpreter

package runner

// interpreterCompiledIn 解释器引擎已编译进本二进制（构建标签 vm_no_interpreter 可去掉）
const interpreterCompiledIn = true
