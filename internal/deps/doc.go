// Package deps checks for the external binaries convoy shells out to.
package deps
