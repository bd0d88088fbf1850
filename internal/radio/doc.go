// Package radio merges requested radio duties into the current role and
// applies the result to the driver.
package radio
