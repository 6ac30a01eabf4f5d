// Command billingd serves the billing engine over HTTP and provides
// PayHere signing helpers.
package main

func main() {
	Execute()
}
