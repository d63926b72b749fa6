// Command regbatch registers the Drop for Symlink shell extension and applies
// declarative registry batches to the live registry or to .reg file stores.
package main

func main() {
	execute()
}
