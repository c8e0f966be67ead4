// Package harness runs encryption test cases against the simulated machine.
//
// A test case body calls assertions on a Case. A failed assertion restores
// the safe state saved when the case started, then marks the case failed.
// A failed case never resumes: every later assertion returns the same
// failure, and the body is expected to return it.
//
// Scenarios are YAML descriptions of a test case as a list of steps, with
// numeric operands written as Starlark expressions over the machine
// constants:
//
//	name: seal-root
//	steps:
//	  - op: check_perms_encrypt_set
//	    src: ROOT
//	  - op: seal_root_encrypt
//	    dst: c2
//	    type: "1 << 4"
package harness
