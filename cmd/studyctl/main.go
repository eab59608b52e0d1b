package main

import (
	"github.com/joho/godotenv"

	"github.com/studyquest/backend/cmd/studyctl/root"
)

func main() {
	_ = godotenv.Load()
	root.Execute()
}
