//go:build vm_no_interpreter

package runner

const interpreterCompiledIn = false
