package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var errProjectIDRequired = errors.New("gcp project id is required")

// Client is a Pub/Sub v2 client bound to a project and the topics the
// process publishes to.
type Client struct {
	client    *pubsub.Client
	projectID string
	topics    []string
}

// NewClient dials Pub/Sub, or the emulator when one is configured, and fails
// unless every topic exists. With CreateTopics set missing topics are created.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, topics []string, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	names := make([]string, 0, len(topics))
	for _, t := range topics {
		full := topicName(projectID, t)
		if full == "" {
			return nil, fmt.Errorf("topic %q has no usable name", t)
		}
		names = append(names, full)
	}
	if len(names) == 0 {
		return nil, errors.New("at least one topic is required")
	}

	var opts []option.ClientOption
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		opts = append(opts,
			option.WithEndpoint(host),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	raw, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: raw, projectID: projectID, topics: names}

	for _, name := range names {
		if err := c.ensureTopic(ctx, name, cfg.CreateTopics, logg); err != nil {
			_ = raw.Close()
			return nil, err
		}
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project":  projectID,
			"topics":   names,
			"emulator": cfg.EmulatorHost != "",
		}), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) ensureTopic(ctx context.Context, name string, create bool, logg *logger.Logger) error {
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.NotFound {
		return fmt.Errorf("checking topic %s: %w", name, err)
	}
	if !create {
		return fmt.Errorf("topic %s does not exist", name)
	}
	_, err = c.client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: name})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("creating topic %s: %w", name, err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", name), "pubsub topic created")
	}
	return nil
}

// Publisher returns the publisher for a topic id or full resource name.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	name := topicName(c.projectID, topic)
	if name == "" {
		return nil
	}
	return c.client.Publisher(name)
}

// Ping checks that the configured topics are still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	for _, name := range c.topics {
		if _, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name}); err != nil {
			return fmt.Errorf("topic %s: %w", name, err)
		}
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// topicName expands a bare topic id to projects/<project>/topics/<id>. Full
// topic resource names pass through.
func topicName(projectID, topic string) string {
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return ""
	case strings.HasPrefix(topic, "projects/"):
		parts := strings.Split(topic, "/")
		if len(parts) != 4 || parts[1] == "" || parts[2] != "topics" || parts[3] == "" {
			return ""
		}
		return topic
	case strings.Contains(topic, "/") || projectID == "":
		return ""
	}
	return "projects/" + projectID + "/topics/" + topic
}
