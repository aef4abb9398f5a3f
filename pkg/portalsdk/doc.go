/*
Package portalsdk is the Go client for the ledgerdesk portal API, and the
home of the wire types and error codes the server writes.

# Client vs Session

A Client covers the unauthenticated endpoints and signs in:

	client := portalsdk.NewClient("https://portal.example.com.au")

	health, err := client.Health(ctx)

	session, err := client.Login(ctx, "jo@example.com.au", password)

A Session carries the mobile token pair and refreshes the access token
about 30 seconds before it expires:

	docs, err := session.ListDocuments(ctx, portalsdk.DocumentQuery{})

	body, contentType, err := session.DownloadDocument(ctx, docs[0].ID)
	defer body.Close()

# Refresh tokens

Refresh tokens are single use. Every refresh returns a new pair that
belongs to the same sign-in, and presenting a spent token a second time
revokes the whole sign-in:

	tokens, err := client.Refresh(ctx, stored)
	if errors.Is(err, portalsdk.ErrReplayDetected) {
		// sign in again
	}

Persist Session.RefreshToken after each request if the app needs to
resume later with Client.NewSessionFromTokens.

# Errors

Every non-2xx response is returned as *APIError and compares equal to the
predefined errors with errors.Is:

	if errors.Is(err, portalsdk.ErrRoleNotPermitted) {
		// staff accounts cannot use the mobile app
	}
*/
package portalsdk
