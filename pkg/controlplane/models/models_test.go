package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashPassword(t *testing.T) {
	// sha1("password")
	assert.Equal(t, "5baa61e4c9b93f3f0682250b6cf8331b7ee68fd8", HashPassword("password"))
}

func TestPrincipal_CheckPassword(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		password string
		want     bool
	}{
		{"match", HashPassword("s3cret"), "s3cret", true},
		{"upper-case stored digest", "5BAA61E4C9B93F3F0682250B6CF8331B7EE68FD8", "password", true},
		{"mismatch", HashPassword("s3cret"), "S3cret", false},
		{"no stored digest", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Principal{PasswordHash: tt.stored}
			assert.Equal(t, tt.want, p.CheckPassword(tt.password))
		})
	}
}

func TestPrincipal_Validate(t *testing.T) {
	assert.Error(t, (&Principal{Name: "alice"}).Validate())
	assert.Error(t, (&Principal{Namespace: "uni"}).Validate())
	assert.NoError(t, (&Principal{Namespace: "uni", Name: "alice"}).Validate())
}

func TestPrincipal_Details(t *testing.T) {
	p := Principal{Namespace: "uni", Name: "alice", FirstName: "Alice", LastName: "Liddell", Email: "a@uni.edu"}
	assert.Equal(t, Details{FirstName: "Alice", LastName: "Liddell", Email: "a@uni.edu"}, p.Details())
	assert.Equal(t, "uni:alice", p.Qualified())
}

func TestUserClass_Validate(t *testing.T) {
	assert.Error(t, (&UserClass{}).Validate())
	assert.NoError(t, (&UserClass{Name: "students"}).Validate())
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "principals", Principal{}.TableName())
	assert.Equal(t, "user_classes", UserClass{}.TableName())
	assert.Equal(t, "user_class_memberships", Membership{}.TableName())
	assert.Equal(t, "sso_mappings", SSOMapping{}.TableName())
	assert.Len(t, AllModels(), 4)
}
