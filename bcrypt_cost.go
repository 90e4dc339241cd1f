//go:build !race

package management

func passwordHashCost() int {
	return 12
}
