package models

import "time"

// NASClient is a trusted RADIUS peer: a VPN concentrator or other
// Network Access Server that has been provisioned with a shared secret.
type NASClient struct {
	ID           uint      `gorm:"column:id;primaryKey" json:"id"`
	Identifier   string    `gorm:"column:identifier;size:64;uniqueIndex:idx_nas_identifier_ip" json:"identifier"`
	IPAddress    string    `gorm:"column:ip_address;size:45;uniqueIndex:idx_nas_identifier_ip" json:"ip_address"`
	SharedSecret string    `gorm:"column:shared_secret;size:128;not null" json:"-"`
	AuthPort     int       `gorm:"column:auth_port;default:1812" json:"auth_port"`
	AcctPort     int       `gorm:"column:acct_port;default:1813" json:"acct_port"`
	IsActive     bool      `gorm:"column:is_active;default:true;index" json:"is_active"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (NASClient) TableName() string {
	return "nas_clients"
}

// Secret returns the shared secret as bytes for authenticator computation.
func (n *NASClient) Secret() []byte {
	return []byte(n.SharedSecret)
}
