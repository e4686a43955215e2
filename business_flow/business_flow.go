// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/soundroots/communityos/app/dto"
	"github.com/soundroots/communityos/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for audit logging and session tracking
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	DeviceInfo map[string]string `json:"device_info,omitempty"`
	Location   *LocationInfo     `json:"location,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// LocationInfo holds geographical location information
type LocationInfo struct {
	Country   string `json:"country,omitempty"`
	Region    string `json:"region,omitempty"`
	City      string `json:"city,omitempty"`
	Latitude  string `json:"latitude,omitempty"`
	Longitude string `json:"longitude,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		DeviceInfo: make(map[string]string),
		Additional: make(map[string]string),
	}
}

// AddDeviceInfo adds device information to the metadata
func (cm *ClientMetadata) AddDeviceInfo(key, value string) {
	if cm.DeviceInfo == nil {
		cm.DeviceInfo = make(map[string]string)
	}
	cm.DeviceInfo[key] = value
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetLocation sets location information
func (cm *ClientMetadata) SetLocation(location *LocationInfo) {
	cm.Location = location
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetSessionID sets the session ID
func (cm *ClientMetadata) SetSessionID(sessionID string) {
	cm.SessionID = sessionID
}

// ToAuthUserDTO converts a user model to AuthUserDTO for authentication responses
func ToAuthUserDTO(user models.User) dto.AuthUserDTO {
	dto := dto.AuthUserDTO{
		ID:               user.ID,
		UUID:             user.UUID.String(),
		Email:            user.Email,
		FirstName:        user.FirstName,
		LastName:         user.LastName,
		Mobile:           user.Mobile,
		AccountType:      user.AccountType.TypeName,
		OrganisationName: user.OrganisationName,
		City:             user.City,
		IsActive:         user.IsActive,
		IsEmailVerified:  user.IsEmailVerified,
		IsMobileVerified: user.IsMobileVerified,
		CreatedAt:        user.CreatedAt.Format(time.RFC3339),
	}

	return dto
}

func ToUserSessionDTO(session models.UserSession) dto.UserSessionDTO {
	refreshToken := ""
	if session.RefreshToken != nil {
		refreshToken = *session.RefreshToken
	}

	return dto.UserSessionDTO{
		SessionToken: session.SessionToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(time.Until(session.ExpiresAt).Seconds()),
		TokenType:    "Bearer",
		CreatedAt:    session.CreatedAt.Format(time.RFC3339),
	}
}

// ToAdminDTOModel converts an admin model to its response DTO
func ToAdminDTOModel(admin models.Admin) dto.AdminDTO {
	return dto.AdminDTO{
		ID:        admin.ID,
		UUID:      admin.UUID.String(),
		Username:  admin.Username,
		IsActive:  admin.IsActive,
		CreatedAt: admin.CreatedAt.Format(time.RFC3339),
	}
}

func ToAdminSessionDTO(accessToken, refreshToken string) dto.AdminSessionDTO {
	return dto.AdminSessionDTO{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}
}

// ToAppDTO converts a catalog entry to its public response DTO
func ToAppDTO(app models.App) dto.AppDTO {
	return dto.AppDTO{
		ID:             app.ID,
		Slug:           app.Slug,
		Name:           app.Name,
		Description:    app.Description,
		AgeRestriction: app.AgeRestriction,
	}
}

// ToRecommendationDTO converts a stored recommendation row (with preloaded App)
// to its response DTO
func ToRecommendationDTO(rec models.AppRecommendation) dto.RecommendationDTO {
	return dto.RecommendationDTO{
		ID:         rec.ID,
		App:        ToAppDTO(rec.App),
		Score:      rec.RecommendationScore,
		ShownAt:    rec.ShownAt.Format(time.RFC3339),
		Accepted:   rec.IsAccepted(),
		AcceptedAt: formatTimePtr(rec.AcceptedAt),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
