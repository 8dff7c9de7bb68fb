package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"supportportal/internal/database"
)

const defaultBaseURL = "http://localhost:8081"

var (
	baseURL     string
	token       string
	tokenHeader string
)

type ResponseError struct {
	Message string `json:"message"`
}

var apiServiceBase = func() *resty.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetError(&ResponseError{}).
		OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
			if resp.StatusCode() >= 400 {
				if e, ok := resp.Error().(*ResponseError); ok && e.Message != "" {
					return errors.New(e.Message)
				}
				return fmt.Errorf("unexpected status %s", resp.Status())
			}

			return nil
		})

	if token != "" {
		client.SetAuthToken(token)
	}
	return client
}

func printUser(user *database.User) {
	fmt.Println("ID       :", user.ID)
	fmt.Println("User ID  :", user.UserID)
	fmt.Println("Username :", user.Username)
	fmt.Println("Email    :", user.Email)
	fmt.Println("Role     :", user.Role)
	fmt.Println("Active   :", user.Enabled)
	fmt.Println("Locked   :", user.Locked())
}

var rootCmd = &cobra.Command{
	Use:   "supportportal",
	Short: "Support portal CLI",
}

var loginCmd = &cobra.Command{
	Use:   "login <username> <password>",
	Short: "Log in and print a bearer token",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := apiServiceBase().R().
			SetBody(map[string]string{
				"username": args[0],
				"password": args[1],
			}).
			SetResult(&database.User{}).
			Post("/user/login")

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		printUser(resp.Result().(*database.User))
		fmt.Println("Token    :", resp.Header().Get(tokenHeader))
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userRegisterCmd = &cobra.Command{
	Use:   "register <first_name> <last_name> <username> <email>",
	Short: "Register a new account, the password is mailed",
	Args:  cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := apiServiceBase().R().
			SetBody(map[string]string{
				"firstName": args[0],
				"lastName":  args[1],
				"username":  args[2],
				"email":     args[3],
			}).
			SetResult(&database.User{}).
			Post("/user/register")

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		printUser(resp.Result().(*database.User))
	},
}

var userFindCmd = &cobra.Command{
	Use:   "find <username>",
	Short: "Show a user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := apiServiceBase().R().
			SetResult(&database.User{}).
			Get("/user/find/" + url.PathEscape(args[0]))

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		printUser(resp.Result().(*database.User))
	},
}

var userResetPasswordCmd = &cobra.Command{
	Use:   "reset-password <email>",
	Short: "Mail a new password to the account owning email",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := apiServiceBase().R().
			SetResult(&ResponseError{}).
			Get("/user/resetpassword/" + url.PathEscape(args[0]))

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		fmt.Println(resp.Result().(*ResponseError).Message)
	},
}

var userUnlockCmd = &cobra.Command{
	Use:   "unlock <username>",
	Short: "Clear failed logins and unlock an account",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := apiServiceBase().R().
			SetResult(&database.User{}).
			Post("/user/unlock/" + url.PathEscape(args[0]))

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		printUser(resp.Result().(*database.User))
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := apiServiceBase().R().
			SetResult(&ResponseError{}).
			Delete("/user/delete/" + url.PathEscape(args[0]))

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		fmt.Println(resp.Result().(*ResponseError).Message)
	},
}

func main() {
	userCmd.AddCommand(userRegisterCmd)
	userCmd.AddCommand(userFindCmd)
	userCmd.AddCommand(userResetPasswordCmd)
	userCmd.AddCommand(userUnlockCmd)
	userCmd.AddCommand(userDeleteCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(userCmd)

	rootCmd.PersistentFlags().StringVarP(&baseURL, "url", "u", defaultBaseURL, "API base URL")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", os.Getenv("SP_TOKEN"), "Bearer token")
	rootCmd.PersistentFlags().StringVar(&tokenHeader, "token-header", "Jwt-Token", "Response header carrying the token")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
