// Command emissions-import loads the emissions CSV dataset into PostgreSQL.
package main

func main() {
	Execute()
}
