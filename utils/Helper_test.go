package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestSessionTTL(t *testing.T) {
	a := assert.New(t)
	// created and slid sessions must share the same lifetime
	a.Equal(SessionExpirationTime*time.Minute, SessionTTL())
	a.Equal(1800*time.Minute, SessionTTL())
}

func TestRandString(t *testing.T) {
	a := assert.New(t)
	a.Len(RandString(12), 12)
	a.Len(RandString(30), 30)
}

func TestGenerateCouponCode(t *testing.T) {
	a := assert.New(t)
	code := GenerateCouponCode(8)
	a.True(strings.HasPrefix(code, "WIN-"))
	a.Len(code, len("WIN-")+8)
	// ambiguous characters are excluded from the alphabet
	for _, ch := range []string{"O", "0", "I", "1"} {
		a.NotContains(code[4:], ch)
	}
}

func TestHashPassword(t *testing.T) {
	a := assert.New(t)
	hash, err := HashPassword("Secret#123")
	a.NoError(err)
	a.NoError(bcrypt.CompareHashAndPassword([]byte(hash), []byte("Secret#123")))
	a.Error(bcrypt.CompareHashAndPassword([]byte(hash), []byte("wrong")))
}

func TestValidateStruct(t *testing.T) {
	a := assert.New(t)
	type Form struct {
		Name     string
		Note     string
		Password string
	}
	form := Form{Name: "Good name", Note: "bad <script>", Password: "any$thing{goes}"}
	invalidKeys := ValidateStruct(form, []string{}, []string{"Password"})
	a.Equal([]string{"Note"}, invalidKeys)

	message := ValidateStructText(invalidKeys)
	a.NotNil(message)
	a.Contains(*message, "Note")
	a.Nil(ValidateStructText(nil))

	// extending the allowed set clears the offending field
	a.Empty(ValidateStruct(form, []string{"<>/"}, []string{"Password"}))
}

func TestIsErrDuplicate(t *testing.T) {
	a := assert.New(t)
	dupErr := &pgconn.PgError{Code: "23505", Detail: "Key (email)=(x@y.z) already exists.", ConstraintName: "merchants_email_key"}
	isDuplicate, key := IsErrDuplicate(dupErr)
	a.True(isDuplicate)
	a.Equal("email", key)

	isDuplicate, _ = IsErrDuplicate(&pgconn.PgError{Code: "23503"})
	a.False(isDuplicate)

	isFk, key := IsForeignKeyErr(&pgconn.PgError{Code: "23503", Detail: "Key (merchant_id)=(9) is not present in table \"merchants\".", ConstraintName: "coupons_merchant_id_fkey"})
	a.True(isFk)
	a.Equal("merchant_id", key)
}
