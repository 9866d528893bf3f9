package domain

// UserProfile is the per-user record populated by the directory lookup and
// the login flow. It is overwritten on re-authentication.
type UserProfile struct {
	UserID            string `json:"userId,omitempty"`
	ObjectID          string `json:"objectId,omitempty"`
	GivenName         string `json:"givenName,omitempty"`
	Surname           string `json:"surname,omitempty"`
	DisplayName       string `json:"displayName,omitempty"`
	Mail              string `json:"mail,omitempty"`
	MobilePhone       string `json:"mobilePhone,omitempty"`
	UsageLocation     string `json:"usageLocation,omitempty"`
	UserPrincipalName string `json:"userPrincipalName,omitempty"`
	AuthToken         string `json:"authToken,omitempty"`
}
