package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/adfharrison1/go-crm/pkg/api"
	"github.com/adfharrison1/go-crm/pkg/domain"
)

var (
	loadCompanies = []string{"Acme Corp", "Beta LLC", "Delta Inc", "Gamma Co"}
	loadTitles    = []string{"Engineer", "Manager", "Designer"}
	loadCities    = [][2]string{{"New York", "NY"}, {"Austin", "TX"}, {"Seattle", "WA"}, {"Denver", "CO"}}
)

// generateUser builds a random valid user.
func generateUser(rng *rand.Rand) domain.Record {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	name := make([]byte, 6)
	for i := range name {
		name[i] = letters[rng.Intn(len(letters))]
	}
	first := strings.ToUpper(string(name[:1])) + string(name[1:])
	city := loadCities[rng.Intn(len(loadCities))]
	role := domain.RoleAttendee
	if rng.Intn(4) == 0 {
		role = domain.RoleHost
	}
	return domain.Record{
		FirstName:      domain.StringPtr(first),
		LastName:       domain.StringPtr("Load"),
		Email:          domain.StringPtr(fmt.Sprintf("%s.%d@example.com", string(name), rng.Int63())),
		Role:           domain.StringPtr(role),
		Company:        domain.StringPtr(loadCompanies[rng.Intn(len(loadCompanies))]),
		JobTitle:       domain.StringPtr(loadTitles[rng.Intn(len(loadTitles))]),
		City:           domain.StringPtr(city[0]),
		State:          domain.StringPtr(city[1]),
		EventsHosted:   domain.Int64Ptr(int64(rng.Intn(5))),
		EventsAttended: domain.Int64Ptr(int64(rng.Intn(10))),
	}
}

type loadClient struct {
	base   string
	client *http.Client
}

func (c *loadClient) insertBatch(users []domain.Record) error {
	body, err := json.Marshal(api.BatchInsertRequest{Users: users})
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}
	resp, err := c.client.Post(c.base+"/users/batch", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, msg)
	}
	return nil
}

// pageAll follows next_cursor until the query is exhausted and returns the
// number of users and pages read.
func (c *loadClient) pageAll(params url.Values) (users, pages int, err error) {
	for {
		resp, err := c.client.Get(c.base + "/users/filter?" + params.Encode())
		if err != nil {
			return users, pages, fmt.Errorf("failed to send request: %w", err)
		}
		var page domain.Page
		decodeErr := json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return users, pages, fmt.Errorf("unexpected status code %d", resp.StatusCode)
		}
		if decodeErr != nil {
			return users, pages, fmt.Errorf("failed to decode page: %w", decodeErr)
		}
		users += page.Count
		pages++
		if page.NextCursor == "" {
			return users, pages, nil
		}
		params.Set("cursor", page.NextCursor)
	}
}

func newLoadCommand() *cobra.Command {
	var (
		serverURL string
		numUsers  int
		pageSize  int
		seedValue int64
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Insert random users into a running server and page through them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if numUsers <= 0 {
				return fmt.Errorf("--users must be greater than 0")
			}
			out := cmd.OutOrStdout()
			rng := rand.New(rand.NewSource(seedValue))
			c := &loadClient{base: strings.TrimRight(serverURL, "/"), client: &http.Client{Timeout: 30 * time.Second}}

			fmt.Fprintf(out, "Inserting %s users into %s\n", humanize.Comma(int64(numUsers)), c.base)
			start := time.Now()
			for done := 0; done < numUsers; {
				n := numUsers - done
				if n > api.MaxBatchSize {
					n = api.MaxBatchSize
				}
				batch := make([]domain.Record, n)
				for i := range batch {
					batch[i] = generateUser(rng)
				}
				if err := c.insertBatch(batch); err != nil {
					return fmt.Errorf("batch at %d: %w", done, err)
				}
				done += n
				fmt.Fprintf(out, "Progress: %d/%d users (%.1f%%)\n", done, numUsers, float64(done)/float64(numUsers)*100)
			}
			elapsed := time.Since(start)
			fmt.Fprintf(out, "Inserted in %v (%.1f users/sec)\n", elapsed, float64(numUsers)/elapsed.Seconds())

			for _, company := range loadCompanies {
				params := url.Values{
					"company": {company},
					"sort_by": {"job_title"},
					"limit":   {fmt.Sprint(pageSize)},
				}
				start := time.Now()
				users, pages, err := c.pageAll(params)
				if err != nil {
					return fmt.Errorf("paging %s: %w", company, err)
				}
				fmt.Fprintf(out, "%-10s %s users over %d pages in %v\n", company, humanize.Comma(int64(users)), pages, time.Since(start))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of a running go-crm server")
	cmd.Flags().IntVar(&numUsers, "users", 1000, "number of users to insert")
	cmd.Flags().IntVar(&pageSize, "page-size", 50, "limit used while paging")
	cmd.Flags().Int64Var(&seedValue, "rand-seed", time.Now().UnixNano(), "random seed for generated users")
	return cmd
}
