package cipher

// Result is the outcome of opening one ciphertext: either a plaintext or the
// reason it could not be read.
type Result struct {
	Plaintext string
	Err       error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Text returns the plaintext, or Placeholder when decryption failed.
func (r Result) Text() string {
	if r.Err != nil {
		return Placeholder
	}
	return r.Plaintext
}

// Open never panics; malformed input becomes a failed Result.
func (c *Cipher) Open(ciphertext, passphrase string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: ErrDecryption}
		}
	}()
	plaintext, err := c.Decrypt(ciphertext, passphrase)
	return Result{Plaintext: plaintext, Err: err}
}

func Open(ciphertext, passphrase string) Result {
	return std.Open(ciphertext, passphrase)
}
