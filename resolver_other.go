//go:build !linux

package rs485

// SystemResolver returns the resolver used when Create is given none
func SystemResolver() Resolver {
	return BugstResolver{}
}
