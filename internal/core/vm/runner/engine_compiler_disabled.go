//go:build vm_no_compiler

package runner

const compilerCompiledIn = false
