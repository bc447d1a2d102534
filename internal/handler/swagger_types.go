package handler

import "customsdesk/internal/domain"

// Request bodies, named so swag can document them.

// CreateSessionRequest represents the start session request body.
type CreateSessionRequest struct {
	ClientName  string `json:"client_name" example:"Acme Imports"`
	ClientEmail string `json:"client_email" binding:"omitempty,email" example:"ops@acme.test"`
}

// ClientContactRequest represents the update client contact request body.
type ClientContactRequest struct {
	ClientName  string `json:"client_name" example:"Acme Imports"`
	ClientEmail string `json:"client_email" binding:"omitempty,email" example:"ops@acme.test"`
}

// ResolveRequest represents a discrepancy resolution.
type ResolveRequest struct {
	Field  domain.FieldID          `json:"field" binding:"required" example:"Weight"`
	Choice domain.ResolutionChoice `json:"choice" binding:"required" example:"use_bill_of_lading"`
	Value  string                  `json:"value" example:"455 KG"`
}

// EditWorkingRequest represents a direct edit of the working declaration.
// An empty value clears the field.
type EditWorkingRequest struct {
	Field domain.FieldID `json:"field" binding:"required" example:"HSCode"`
	Value *string        `json:"value" binding:"required" example:"3926.90"`
}
