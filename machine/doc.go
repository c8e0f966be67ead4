// Package machine simulates the capability hardware under test.
//
// The machine has 32 capability registers (c0-c31), the mcause and xccsr
// status registers, a 64-bit free-running cycle counter readable as two
// 32-bit halves, and an encryption key table indexed by object type.
// Register c31 holds ROOT after reset, and c29 is the scratch register used
// to carry the object type of a seal.
//
// When Encrypt is set, sealing encrypts the address and bounds of the sealed
// capability, and the four encryption causes of package cause may be raised.
// When it is clear, the same instructions seal and unseal in the clear.
package machine
