//go:build llvm

package main

// The native backend registers itself as "llvm"
import _ "github.com/isaacev/bfjit/backend/llvm"
