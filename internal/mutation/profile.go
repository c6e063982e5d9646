package mutation

import "yap-client/internal/models"

// ProfileDiff builds the update payload for form against the last user record
// the server confirmed. Text fields are sent only when they differ. Picture
// fields are sent only when a new picture was picked and it differs. The
// password pair is sent only when at least one of the two was filled in.
func ProfileDiff(current models.User, form models.ProfileForm) models.ProfileUpdate {
	update := models.ProfileUpdate{}

	text := []struct {
		field    string
		old, new string
	}{
		{"fullName", current.FullName, form.FullName},
		{"username", current.Username, form.Username},
		{"email", current.Email, form.Email},
		{"bio", current.Bio, form.Bio},
		{"link", current.Link, form.Link},
	}
	for _, f := range text {
		if f.new != f.old {
			update[f.field] = f.new
		}
	}

	if form.CurrentPassword != "" || form.NewPassword != "" {
		update["currentPassword"] = form.CurrentPassword
		update["newPassword"] = form.NewPassword
	}

	if form.ProfilePicture != nil && *form.ProfilePicture != current.ProfilePicture {
		update["profilePicture"] = *form.ProfilePicture
	}
	if form.CoverPicture != nil && *form.CoverPicture != current.CoverPicture {
		update["coverPicture"] = *form.CoverPicture
	}
	return update
}

// FormFor pre-fills a profile form with user's current values.
func FormFor(user models.User) models.ProfileForm {
	return models.ProfileForm{
		FullName: user.FullName,
		Username: user.Username,
		Email:    user.Email,
		Bio:      user.Bio,
		Link:     user.Link,
	}
}
