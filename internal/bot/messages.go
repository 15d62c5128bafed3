package bot

// User-facing replies.
const (
	WelcomeMessage = "Welcome! Please provide your API keys in the following format:\n\n" +
		"GROQ API Key: <your-groq-api-key>\nLinux API Key: <your-linux-api-key>"
	KeysSavedMessage         = "Your API keys have been saved successfully!"
	InvalidFormatMessage     = "Invalid format. Please try again."
	OnboardingErrorMessage   = "An error occurred while collecting your API keys. Please try again later."
	OnboardingTimeoutMessage = "No API keys received in time. Send any message to start onboarding again."
	GoalUsageMessage         = "Please specify a goal after the command, e.g., `!goal install nginx`."
	GoalFailedMessage        = "An error occurred while working on your goal. Please try again later."
	RateLimitedMessage       = "You are sending goals too quickly. Please wait a moment and try again."
)
