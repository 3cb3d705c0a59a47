// Package kerberos authenticates passwords with an AS exchange against a
// Kerberos KDC.
//
// When a service keytab is configured the strategy also requests a
// ticket for the service principal and decrypts it with the keytab. This
// proves the answering KDC knows the service key, so a spoofed KDC
// cannot approve a login. The keytab is polled and hot-reloaded.
package kerberos
