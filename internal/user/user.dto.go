package user

import "encoding/json"

type CreateUserRequest struct {
	ClerkID   string `json:"clerkId" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"required,min=3,max=30"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// Clerk webhook payloads (svix-delivered).

type ClerkWebhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type ClerkEmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	Verification struct {
		Status string `json:"status"`
	} `json:"verification"`
}

type ClerkUserData struct {
	ID              string              `json:"id"`
	Username        string              `json:"username"`
	FirstName       string              `json:"first_name"`
	LastName        string              `json:"last_name"`
	ImageURL        string              `json:"image_url"`
	ProfileImageURL string              `json:"profile_image_url"`
	EmailAddresses  []ClerkEmailAddress `json:"email_addresses"`
}
