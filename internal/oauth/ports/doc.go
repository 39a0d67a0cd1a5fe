// Package ports declares the collaborator services the authorization server
// reads user data from. Adapters implement them; the claims assembler
// depends only on these interfaces.
package ports

//go:generate mockgen -source=identity.go -destination=mocks/identity.go -package=mocks
//go:generate mockgen -source=profile.go -destination=mocks/profile.go -package=mocks
//go:generate mockgen -source=image.go -destination=mocks/image.go -package=mocks
