package pubsub

import "testing"

func TestChannelToTopicAndKey(t *testing.T) {
	cases := []struct {
		channel string
		topic   string
		key     string
	}{
		{ChannelMembership, "relay-membership", "cluster"},
		{ChannelBroadcast, "relay-broadcast", "cluster"},
		{InstanceDirectChannel("a1b2"), "relay-direct", "instance:a1b2"},
		{"relay:room:ward-3:events", "relay-events", "room:ward-3"},
	}

	for _, tc := range cases {
		topic, key, err := channelToTopicAndKey(tc.channel)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.channel, err)
		}
		if topic != tc.topic || key != tc.key {
			t.Fatalf("%s: got topic=%q key=%q, want topic=%q key=%q", tc.channel, topic, key, tc.topic, tc.key)
		}
	}

	for _, bad := range []string{"", "relay", "relay:", ":x:y", "relay:cluster:"} {
		if _, _, err := channelToTopicAndKey(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
