package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	sharedKafka "nightreel/shared/kafka"
	"nightreel/types"
	"nightreel/video"
)

type fakeProcessor struct {
	err   error
	calls int
}

func (f *fakeProcessor) Process(ctx context.Context, job *types.Job) (*video.Result, error) {
	f.calls++
	return &video.Result{}, f.err
}

func message(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestHandlerMarking(t *testing.T) {
	valid := types.Job{ID: "k1", Scenes: []types.Scene{{Image: "a.png", Duration: 1}}}

	cases := []struct {
		name      string
		msg       []byte
		procErr   error
		wantMark  bool
		wantErr   bool
		wantCalls int
	}{
		{"success", message(t, valid), nil, true, false, 1},
		{"undecodable", []byte("{not json"), nil, true, false, 0},
		{"invalid job", message(t, types.Job{ID: "k2"}), nil, true, false, 0},
		{"missing asset", message(t, valid), fmt.Errorf("%w: a.png", video.ErrAssetMissing), true, false, 1},
		{"render failure retried", message(t, valid), fmt.Errorf("%w: exit 1", video.ErrRenderFailure), false, true, 1},
		{"publish failure retried", message(t, valid), errors.New("upload timeout"), false, true, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proc := &fakeProcessor{err: tc.procErr}
			h := NewHandler(proc, zerolog.Nop())

			mark, err := h.HandleMessage(context.Background(), tc.msg)
			if mark != tc.wantMark {
				t.Errorf("mark = %v; want %v", mark, tc.wantMark)
			}
			if (err != nil) != tc.wantErr {
				t.Errorf("err = %v; wantErr %v", err, tc.wantErr)
			}
			if proc.calls != tc.wantCalls {
				t.Errorf("calls = %d; want %d", proc.calls, tc.wantCalls)
			}
		})
	}
}

func TestEnvGetters(t *testing.T) {
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "")
	t.Setenv("KAFKA_TOPIC_RENDER_JOBS", "")
	t.Setenv("KAFKA_CONSUMER_GROUP_ID", "custom")

	if got := GetKafkaBrokers(); len(got) != 1 || got[0] != "localhost:9093" {
		t.Errorf("brokers = %v", got)
	}
	if got := GetKafkaTopic(); got != "render-jobs" {
		t.Errorf("topic = %q", got)
	}
	if got := GetKafkaGroupID(); got != "custom" {
		t.Errorf("group = %q", got)
	}

	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "a:9092,b:9092")
	if got := GetKafkaBrokers(); len(got) != 2 {
		t.Errorf("brokers = %v", got)
	}
}

type fakeSender struct {
	sent []*sarama.ProducerMessage
}

func (f *fakeSender) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	f.sent = append(f.sent, msg)
	return 0, int64(len(f.sent) - 1), nil
}

func (f *fakeSender) Close() error { return nil }

func TestProducerRoundTripsThroughHandler(t *testing.T) {
	sender := &fakeSender{}
	producer := sharedKafka.NewProducerWithSender(sender, "render-jobs")

	job := types.Job{ID: "k9", Scenes: []types.Scene{{Image: "a.png", Duration: 2}}}
	if _, _, err := producer.SendJSON(job.ID, job); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 1 || sender.sent[0].Topic != "render-jobs" {
		t.Fatalf("sent = %+v", sender.sent)
	}

	value, err := sender.sent[0].Value.Encode()
	if err != nil {
		t.Fatal(err)
	}
	proc := &fakeProcessor{}
	if mark, err := NewHandler(proc, zerolog.Nop()).HandleMessage(context.Background(), value); !mark || err != nil {
		t.Fatalf("mark=%v err=%v", mark, err)
	}
	if proc.calls != 1 {
		t.Errorf("calls = %d", proc.calls)
	}
}
