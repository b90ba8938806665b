package authn

type (
	// Envelope carries the credentials of a register or login request,
	// either encrypted for the current public key or in plain text.
	Envelope interface {
		envelope()
	}

	EncryptedEnvelope struct {
		// Email and Password are base64 RSA-OAEP ciphertexts
		Email    string
		Password string
	}

	PlainEnvelope struct {
		Email    string
		Password string
	}

	Credentials struct {
		Email    string
		Password string
	}
)

func (EncryptedEnvelope) envelope() {}
func (PlainEnvelope) envelope()     {}

// NewEnvelope picks the envelope variant from the wire fields. The
// encrypted pair wins when both pairs are present; a partial pair
// counts as missing.
func NewEnvelope(encryptedEmail, encryptedPassword, email, password string) (Envelope, error) {
	switch {
	case encryptedEmail != "" && encryptedPassword != "":
		return EncryptedEnvelope{Email: encryptedEmail, Password: encryptedPassword}, nil
	case email != "" && password != "":
		return PlainEnvelope{Email: email, Password: password}, nil
	}
	return nil, ValidationError{Reason: "Email and password are required"}
}
