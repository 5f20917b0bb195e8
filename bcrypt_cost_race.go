//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// Race-enabled builds hash with the default cost so the suite stays
	// inside strict test timeouts.
	return bcrypt.DefaultCost
}
