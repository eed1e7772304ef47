//go:generate mockgen -source=pkg/assistant/generator.go -destination=tests/mocks/generator_mock.go -package=mocks
//go:generate mockgen -source=internal/services/fetcher.go -destination=tests/mocks/provider_mock.go -package=mocks

package main

func main() {
	// This file is only used for generating mocks via go:generate comments
}
