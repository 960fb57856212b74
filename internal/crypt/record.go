package crypt

import "recdb/internal/core"

// EncryptRecord encrypts, in place, every field of record whose name is
// declared confidential by rset's descriptor.
func EncryptRecord(rset *core.RSet, record *core.Record, password string) error {
	for _, f := range record.Fields() {
		p, ok := rset.Props[f.Name]
		if !ok || !p.Confidential {
			continue
		}
		enc, err := EncryptField(f.Value, password)
		if err != nil {
			return err
		}
		f.Value = enc
	}
	return nil
}

// DecryptRecord decrypts, in place, every confidential field of record.
// Fields that fail to decrypt (wrong password, corrupt data) are left
// untouched, per the "leave the field as is" crypto-error contract.
func DecryptRecord(rset *core.RSet, record *core.Record, password string) {
	for _, f := range record.Fields() {
		p, ok := rset.Props[f.Name]
		if !ok || !p.Confidential {
			continue
		}
		if dec, err := DecryptField(f.Value, password); err == nil {
			f.Value = dec
		}
	}
}
