package internal

// ApplicationName is the non-capitalized name of the application (do not change this)
const ApplicationName = "forbiddenapis"
