package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatalf("hash should not equal plaintext")
	}
	if !CheckPassword("s3cret-pass", hash) {
		t.Fatalf("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("wrong password accepted")
	}
}

func TestCheckPasswordMalformedHash(t *testing.T) {
	if CheckPassword("anything", "not-a-bcrypt-hash") {
		t.Fatalf("malformed hash should not validate")
	}
}
