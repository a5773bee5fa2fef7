package domain

// BuildWithdrawalIdempotencyKey scopes a client-supplied key to a coin and sender.
func BuildWithdrawalIdempotencyKey(coin, username, clientKey string) string {
	return coin + ":" + username + ":withdraw:" + clientKey
}
