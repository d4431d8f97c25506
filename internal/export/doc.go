// Package export builds the JSON project report written for every completed
// export. The document layout produced here is a compatibility contract with
// clients that parse downloaded artifacts.
package export
