// Package authsdk is a Go client for the clientauth HTTP API.
//
// Unauthenticated calls live on SDKClient. Register, Authenticate and
// VerifyCode return a Session once tokens have been issued; a Session attaches
// the access token to requests and refreshes it shortly before it expires.
//
//	client := authsdk.NewSDKClient("http://localhost:8080")
//	sess, err := client.Authenticate(ctx, "ada@example.com", "secret")
//	if errors.Is(err, authsdk.ErrMFARequired) {
//		sess, err = client.VerifyCode(ctx, "ada@example.com", code)
//	}
//	if err != nil {
//		return err
//	}
//	account, err := sess.Account(ctx)
//
// The wire types in this package are also what the server encodes, so the
// two cannot drift apart.
package authsdk
