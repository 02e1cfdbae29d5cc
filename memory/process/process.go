// Package process reads memory of a live process through ptrace.
package process

const pkgName = "process"
