package device

type Registration struct {
	DeviceID string `json:"device_id"`
	Token    string `json:"token"`
}

type RegisterRequest struct {
	DeviceID string `json:"device_id"`
}
