// Package client fetches voice tokens from a voicegrant server and keeps a
// device's credential fresh.
//
// Example usage:
//
//	c, err := client.New(client.Config{URL: "https://voice.example.com/api/token"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cred, err := c.Fetch(ctx, voicegrant.CredentialRequest{Identity: "alice@example.com"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// [Refresher] re-fetches ahead of expiry and hands each new credential to a
// callback; [Registration] tracks the device lifecycle that consumes it.
package client
