package session

import "doccollab/internal/models"

// Roster lists one participant per live connection, in join order. The same
// user on two connections appears twice.
func Roster(clients []*Client) []models.Participant {
	out := make([]models.Participant, 0, len(clients))
	for _, c := range clients {
		out = append(out, c.Participant())
	}
	return out
}
