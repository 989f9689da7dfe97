package discover

import "leadhunt-engine/internal/domain"

type CollaboratorError = domain.CollaboratorError

func collabErr(service, op string, err error) error {
	return domain.Collab(service, op, err)
}
