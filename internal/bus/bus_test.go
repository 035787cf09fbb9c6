// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bus

import (
	"sync"
	"testing"
)

func TestPublishAssignsMonotonicSeq(t *testing.T) {
	b := New(nil)
	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	for i := 0; i < 3; i++ {
		b.Publish(Event{JobID: "job-1", Type: EventPhaseChange, Phase: "p1"})
	}

	var last int64
	for i := 0; i < 3; i++ {
		ev := <-ch
		if ev.Seq != last+1 {
			t.Errorf("seq = %d, want %d", ev.Seq, last+1)
		}
		last = ev.Seq
		if ev.At.IsZero() {
			t.Error("At 未填充")
		}
	}
}

func TestSlowSubscriberDropsNotBlocks(t *testing.T) {
	b := New(nil)
	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	// 超出缓冲继续发布，Publish 不得阻塞
	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(Event{JobID: "job-1", Type: EventStageComplete})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	if received != subscriberBuffer {
		t.Errorf("收到 %d 条，缓冲应为 %d", received, subscriberBuffer)
	}
	if got := b.LastSeq("job-1"); got != int64(subscriberBuffer+10) {
		t.Errorf("LastSeq = %d", got)
	}
}

func TestTerminalEventClosesTopic(t *testing.T) {
	b := New(nil)
	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	b.Publish(Event{JobID: "job-1", Type: EventJobCancelled})
	ev, ok := <-ch
	if !ok || ev.Type != EventJobCancelled {
		t.Fatalf("想要 job_cancelled，得到 %+v ok=%v", ev, ok)
	}
	// 通道关闭，不再有事件
	if _, ok := <-ch; ok {
		t.Error("终态后通道应关闭")
	}

	// 终态后发布被忽略
	seq := b.Publish(Event{JobID: "job-1", Type: EventPhaseChange})
	if seq != 1 {
		t.Errorf("终态后发布应不分配新序号，得到 %d", seq)
	}

	// 新订阅立即拿到已关闭通道
	ch2, cancel2 := b.Subscribe("job-1")
	defer cancel2()
	if _, ok := <-ch2; ok {
		t.Error("终态主题的新订阅应立即关闭")
	}
}

func TestReplayFromEventLog(t *testing.T) {
	logStore := NewMemoryEventLog()
	b := New(logStore)

	for i := 0; i < 5; i++ {
		b.Publish(Event{JobID: "job-1", Type: EventStageComplete, Stage: "s"})
	}

	evs := b.Replay("job-1", 2)
	if len(evs) != 3 {
		t.Fatalf("Replay(>2) 返回 %d 条", len(evs))
	}
	if evs[0].Seq != 3 || evs[2].Seq != 5 {
		t.Errorf("Replay 序号错误: %d..%d", evs[0].Seq, evs[2].Seq)
	}
}

func TestConcurrentPublishKeepsLogOrdered(t *testing.T) {
	logStore := NewMemoryEventLog()
	b := New(logStore)

	// 并发发布：Seq 在锁内分配，落盘在锁外，到达顺序会乱
	const publishers = 4
	const perPublisher = 50
	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				b.Publish(Event{JobID: "job-1", Type: EventStageComplete, Stage: "s"})
			}
		}()
	}
	wg.Wait()

	evs := logStore.After("job-1", 0)
	if len(evs) != publishers*perPublisher {
		t.Fatalf("日志条数 = %d, want %d", len(evs), publishers*perPublisher)
	}
	for i := 1; i < len(evs); i++ {
		if evs[i].Seq <= evs[i-1].Seq {
			t.Fatalf("日志乱序: 第 %d 条 seq %d 跟在 %d 之后", i, evs[i].Seq, evs[i-1].Seq)
		}
	}
}

func TestMemoryEventLogOutOfOrderAppend(t *testing.T) {
	l := NewMemoryEventLog()
	for _, seq := range []int64{2, 1, 4, 3} {
		l.Append(Event{JobID: "job-1", Seq: seq})
	}
	evs := l.After("job-1", 0)
	if len(evs) != 4 {
		t.Fatalf("After 返回 %d 条", len(evs))
	}
	for i, want := range []int64{1, 2, 3, 4} {
		if evs[i].Seq != want {
			t.Errorf("evs[%d].Seq = %d, want %d", i, evs[i].Seq, want)
		}
	}
}

func TestMemoryEventLogBounded(t *testing.T) {
	l := NewMemoryEventLog()
	for i := 1; i <= maxEventsPerJob+50; i++ {
		l.Append(Event{JobID: "job-1", Seq: int64(i)})
	}
	evs := l.After("job-1", 0)
	if len(evs) != maxEventsPerJob {
		t.Errorf("日志应有界 %d，得到 %d", maxEventsPerJob, len(evs))
	}
	if evs[0].Seq != 51 {
		t.Errorf("应丢最旧，首条 seq = %d", evs[0].Seq)
	}
}

func TestUnsubscribeReleases(t *testing.T) {
	b := New(nil)
	ch, cancel := b.Subscribe("job-1")
	cancel()
	if _, ok := <-ch; ok {
		t.Error("取消订阅后通道应关闭")
	}
	// 取消后发布不 panic
	b.Publish(Event{JobID: "job-1", Type: EventPhaseChange})
	// 幂等 cancel
	cancel()
}
