//go:build race

package management

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// the race detector slows hashing by an order of magnitude
	return bcrypt.DefaultCost
}
