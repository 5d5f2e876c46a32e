// Package scrape defines core types shared across subsystems.
package scrape
