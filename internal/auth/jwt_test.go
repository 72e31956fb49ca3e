package auth

import (
	"testing"
)

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("secret", "u1", "b1", "CASHIER")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ValidateToken("secret", token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "u1" || claims.BranchID != "b1" || claims.Role != "CASHIER" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", "u1", "b1", "OWNER")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ValidateToken("other-secret", token); err == nil {
		t.Error("token validated with wrong secret")
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	if _, err := ValidateToken("secret", "not.a.token"); err == nil {
		t.Error("garbage token validated")
	}
}
