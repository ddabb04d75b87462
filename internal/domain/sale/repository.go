package sale

type Repository interface {
	Save(*Sale) error
	Recent(limit int) ([]Sale, error)
}
