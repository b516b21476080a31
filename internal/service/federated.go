package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/todo-api/internal/model"
	"github.com/iliyamo/todo-api/internal/repository"
)

// Federated login, linking and merging. Lookups go by provider identity
// key only, never by email: an address attested by one provider is no
// proof of ownership of a same-named account elsewhere.

// LoginWithGoogle signs a user in by Google subject id, creating a guest
// account on first contact. A drifted provider email is adopted into the
// cached copy.
func (s *AuthService) LoginWithGoogle(ctx context.Context, sub, email, fullName string, meta RequestMeta) (AuthResult, error) {
	user, err := s.Users.GetByGoogleSub(ctx, sub)
	switch {
	case err == nil:
		if user.GoogleEmail == nil || *user.GoogleEmail != email {
			old := ""
			if user.GoogleEmail != nil {
				old = *user.GoogleEmail
			}
			user.GoogleEmail = &email
			if err := s.Users.Update(ctx, user); err != nil {
				return AuthResult{}, err
			}
			s.Audit.Record(ctx, model.AuditEvent{
				UserID: &user.ID, Action: model.AuditGoogleEmailUpdated, EntityType: "auth",
				Meta:      map[string]any{"old_email": old, "new_email": email},
				IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
			})
		}
		s.Audit.Record(ctx, model.AuditEvent{
			UserID: &user.ID, Action: model.AuditGoogleLoginSuccess, EntityType: "auth",
			Meta:      map[string]any{"google_email": email},
			IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
		})
	case errors.Is(err, sql.ErrNoRows):
		now := time.Now().UTC()
		user = &model.User{
			ID:       uuid.New(),
			FullName: strings.TrimSpace(fullName),
			Role:     model.RoleGuest,
			// Provider-attested address: the provider already verified it.
			EmailVerifiedAt: &now,
			GoogleSub:       &sub,
			GoogleEmail:     &email,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.Users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return AuthResult{}, Conflict("This Google account was just registered")
			}
			return AuthResult{}, err
		}
		s.Audit.Record(ctx, model.AuditEvent{
			UserID: &user.ID, Action: model.AuditGoogleRegister, EntityType: "auth",
			Meta:      map[string]any{"google_email": email},
			IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
		})
	default:
		return AuthResult{}, err
	}

	s.Metrics.RecordOAuthLogin("google")
	return s.openSession(ctx, user, meta)
}

// LoginWithMicrosoft signs a user in by the (tid, oid) pair, creating a
// guest account on first contact.
func (s *AuthService) LoginWithMicrosoft(ctx context.Context, oid, tid, email, fullName string, meta RequestMeta) (AuthResult, error) {
	user, err := s.Users.GetByMicrosoft(ctx, oid, tid)
	switch {
	case err == nil:
		if user.MSEmail == nil || *user.MSEmail != email {
			old := ""
			if user.MSEmail != nil {
				old = *user.MSEmail
			}
			user.MSEmail = &email
			if err := s.Users.Update(ctx, user); err != nil {
				return AuthResult{}, err
			}
			s.Audit.Record(ctx, model.AuditEvent{
				UserID: &user.ID, Action: model.AuditMicrosoftEmailUpdated, EntityType: "auth",
				Meta:      map[string]any{"old_email": old, "new_email": email},
				IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
			})
		}
		s.Audit.Record(ctx, model.AuditEvent{
			UserID: &user.ID, Action: model.AuditMicrosoftLoginSuccess, EntityType: "auth",
			Meta:      map[string]any{"ms_email": email},
			IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
		})
	case errors.Is(err, sql.ErrNoRows):
		now := time.Now().UTC()
		user = &model.User{
			ID:              uuid.New(),
			FullName:        strings.TrimSpace(fullName),
			Role:            model.RoleGuest,
			EmailVerifiedAt: &now,
			MSOid:           &oid,
			MSTid:           &tid,
			MSEmail:         &email,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.Users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return AuthResult{}, Conflict("This Microsoft account was just registered")
			}
			return AuthResult{}, err
		}
		s.Audit.Record(ctx, model.AuditEvent{
			UserID: &user.ID, Action: model.AuditMicrosoftRegister, EntityType: "auth",
			Meta:      map[string]any{"ms_email": email},
			IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
		})
	default:
		return AuthResult{}, err
	}

	s.Metrics.RecordOAuthLogin("microsoft")
	return s.openSession(ctx, user, meta)
}

// LinkGoogle attaches a Google identity to an existing user. Fails with a
// conflict when the identity is already attached to somebody else.
func (s *AuthService) LinkGoogle(ctx context.Context, userID uuid.UUID, sub, email string, meta RequestMeta) error {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NotFound("User not found")
		}
		return err
	}

	if existing, err := s.Users.GetByGoogleSub(ctx, sub); err == nil {
		if existing.ID != userID {
			return Conflict("This Google account is already linked to another user")
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	user.GoogleSub = &sub
	user.GoogleEmail = &email
	if user.EmailVerifiedAt == nil {
		now := time.Now().UTC()
		user.EmailVerifiedAt = &now
	}
	if err := s.Users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return Conflict("This Google account is already linked to another user")
		}
		return err
	}
	s.Audit.Record(ctx, model.AuditEvent{
		UserID: &userID, Action: model.AuditGoogleLinked, EntityType: "auth",
		Meta:      map[string]any{"google_email": email},
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
	})
	return nil
}

// LinkMicrosoft attaches a Microsoft identity to an existing user.
func (s *AuthService) LinkMicrosoft(ctx context.Context, userID uuid.UUID, oid, tid, email string, meta RequestMeta) error {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NotFound("User not found")
		}
		return err
	}

	if existing, err := s.Users.GetByMicrosoft(ctx, oid, tid); err == nil {
		if existing.ID != userID {
			return Conflict("This Microsoft account is already linked to another user")
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	user.MSOid = &oid
	user.MSTid = &tid
	user.MSEmail = &email
	if user.EmailVerifiedAt == nil {
		now := time.Now().UTC()
		user.EmailVerifiedAt = &now
	}
	if err := s.Users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return Conflict("This Microsoft account is already linked to another user")
		}
		return err
	}
	s.Audit.Record(ctx, model.AuditEvent{
		UserID: &userID, Action: model.AuditMicrosoftLinked, EntityType: "auth",
		Meta:      map[string]any{"ms_email": email},
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
	})
	return nil
}

// UnlinkGoogle detaches the Google identity block. Rejected when it is
// the user's last remaining identity.
func (s *AuthService) UnlinkGoogle(ctx context.Context, userID uuid.UUID, meta RequestMeta) error {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NotFound("User not found")
		}
		return err
	}
	if !user.HasGoogle() {
		return NotFound("Google account is not linked")
	}
	if !user.HasLocal() && !user.HasMicrosoft() {
		return BadRequest("Cannot unlink Google account - user must have at least one identity")
	}

	old := user.GoogleEmail
	user.GoogleSub = nil
	user.GoogleEmail = nil
	if err := s.Users.Update(ctx, user); err != nil {
		return err
	}
	ev := model.AuditEvent{
		UserID: &userID, Action: model.AuditGoogleUnlinked, EntityType: "auth",
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
	}
	if old != nil {
		ev.Meta = map[string]any{"google_email": *old}
	}
	s.Audit.Record(ctx, ev)
	return nil
}

// UnlinkMicrosoft detaches the Microsoft identity block.
func (s *AuthService) UnlinkMicrosoft(ctx context.Context, userID uuid.UUID, meta RequestMeta) error {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NotFound("User not found")
		}
		return err
	}
	if !user.HasMicrosoft() {
		return NotFound("Microsoft account is not linked")
	}
	if !user.HasLocal() && !user.HasGoogle() {
		return BadRequest("Cannot unlink Microsoft account - user must have at least one identity")
	}

	old := user.MSEmail
	user.MSOid = nil
	user.MSTid = nil
	user.MSEmail = nil
	if err := s.Users.Update(ctx, user); err != nil {
		return err
	}
	ev := model.AuditEvent{
		UserID: &userID, Action: model.AuditMicrosoftUnlinked, EntityType: "auth",
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
	}
	if old != nil {
		ev.Meta = map[string]any{"ms_email": *old}
	}
	s.Audit.Record(ctx, ev)
	return nil
}

// MergeAccounts moves every identity block present only on the source
// user onto the destination user, then deletes the source. Any provider
// present on both sides aborts the whole merge; there is no partial
// merge. Destination adopts the source's email verification when it has
// none of its own.
func (s *AuthService) MergeAccounts(ctx context.Context, sourceID, destinationID uuid.UUID, meta RequestMeta) (MergedIdentities, error) {
	if sourceID == destinationID {
		return MergedIdentities{}, BadRequest("Source and destination users must be different")
	}

	source, err := s.Users.GetByID(ctx, sourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MergedIdentities{}, NotFound("Source user not found")
		}
		return MergedIdentities{}, err
	}
	destination, err := s.Users.GetByID(ctx, destinationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MergedIdentities{}, NotFound("Destination user not found")
		}
		return MergedIdentities{}, err
	}

	var conflicts []string
	if source.HasLocal() && destination.HasLocal() {
		conflicts = append(conflicts, "local")
	}
	if source.HasGoogle() && destination.HasGoogle() {
		conflicts = append(conflicts, "google")
	}
	if source.HasMicrosoft() && destination.HasMicrosoft() {
		conflicts = append(conflicts, "microsoft")
	}
	if len(conflicts) > 0 {
		return MergedIdentities{}, &Error{
			Kind:    KindConflict,
			Message: "Cannot merge accounts - overlapping identities: " + strings.Join(conflicts, ", "),
			Details: conflicts,
		}
	}

	var merged MergedIdentities
	restore := *source
	if source.HasLocal() {
		destination.LocalEnabled = source.LocalEnabled
		destination.LocalUsername = source.LocalUsername
		destination.LocalPasswordHash = source.LocalPasswordHash
		source.LocalEnabled = false
		source.LocalUsername = nil
		source.LocalPasswordHash = nil
		merged.Local = true
	}
	if source.HasGoogle() {
		destination.GoogleSub = source.GoogleSub
		destination.GoogleEmail = source.GoogleEmail
		source.GoogleSub = nil
		source.GoogleEmail = nil
		merged.Google = true
	}
	if source.HasMicrosoft() {
		destination.MSOid = source.MSOid
		destination.MSTid = source.MSTid
		destination.MSEmail = source.MSEmail
		source.MSOid = nil
		source.MSTid = nil
		source.MSEmail = nil
		merged.Microsoft = true
	}
	if destination.EmailVerifiedAt == nil && restore.EmailVerifiedAt != nil {
		destination.EmailVerifiedAt = restore.EmailVerifiedAt
	}

	// The moved blocks must leave the source row before the unique indexes
	// accept them on the destination. The emptied source is only deleted
	// once the destination holds the identities, so a failure at any step
	// leaves both accounts in place and no identity is lost.
	if err := s.Users.Update(ctx, source); err != nil {
		return MergedIdentities{}, err
	}
	if err := s.Users.Update(ctx, destination); err != nil {
		rollback := restore
		if rerr := s.Users.Update(ctx, &rollback); rerr != nil {
			return MergedIdentities{}, rerr
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return MergedIdentities{}, Conflict("Identity was claimed concurrently during merge")
		}
		return MergedIdentities{}, err
	}
	if err := s.Users.Delete(ctx, sourceID); err != nil {
		return MergedIdentities{}, err
	}

	s.Audit.Record(ctx, model.AuditEvent{
		UserID: &destinationID, Action: model.AuditAccountsMerged, EntityType: "user", EntityID: &sourceID,
		Meta: map[string]any{
			"source_user_id":      sourceID.String(),
			"destination_user_id": destinationID.String(),
			"merged_local":        merged.Local,
			"merged_google":       merged.Google,
			"merged_microsoft":    merged.Microsoft,
		},
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
	})
	return merged, nil
}
