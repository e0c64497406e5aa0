package build

const (
	// GitHubLink is the static HTTPS URL for the ntfs2linux public GitHub repository.
	GitHubLink = "https://github.com/ntfs2linux/ntfs2linux"
)

var (
	// CommitDate is the date of the latest commit in the repository. This variable gets set at build-time.
	CommitDate string

	// Version is the latest version of the utility. This variable gets set at build-time.
	Version string
)
